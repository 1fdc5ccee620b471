package main

import (
	"crypto/rand"
	"os"

	"github.com/hyperledger/fabric-contract-api-go/v2/contractapi"
	"github.com/rs/zerolog"

	"github.com/DayanaMraz/legal-decision-making/internal/homenc"
)

const defaultPaillierBits = 2048

// buildScheme selects the encryption backend from the environment.
//
//	JURY_ENC_SCHEME=plain        plaintext dev backend
//	JURY_ENC_SCHEME=paillier     Paillier (default); key material from
//	JURY_PAILLIER_KEY            hex JSON, or a fresh ephemeral keypair
func buildScheme(logger zerolog.Logger) (homenc.Scheme, error) {
	switch os.Getenv("JURY_ENC_SCHEME") {
	case "plain":
		logger.Warn().Msg("using plaintext encryption backend; development only")
		return homenc.NewPlain(), nil
	case "", "paillier":
		if raw := os.Getenv("JURY_PAILLIER_KEY"); raw != "" {
			key, err := homenc.ParsePaillierKey([]byte(raw))
			if err != nil {
				return nil, err
			}
			logger.Info().Msg("paillier key loaded from environment")
			return homenc.NewPaillier(key), nil
		}
		key, err := homenc.GeneratePaillierKey(rand.Reader, defaultPaillierBits)
		if err != nil {
			return nil, err
		}
		logger.Warn().Int("bits", defaultPaillierBits).
			Msg("generated ephemeral paillier key; revealed tallies will not survive restarts")
		return homenc.NewPaillier(key), nil
	default:
		logger.Warn().Str("scheme", os.Getenv("JURY_ENC_SCHEME")).Msg("unknown scheme, falling back to paillier")
		key, err := homenc.GeneratePaillierKey(rand.Reader, defaultPaillierBits)
		if err != nil {
			return nil, err
		}
		return homenc.NewPaillier(key), nil
	}
}

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("component", "jurybox").Logger()

	enc, err := buildScheme(logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("encryption scheme setup failed")
	}
	cc, err := contractapi.NewChaincode(NewJuryContract(enc))
	if err != nil {
		logger.Fatal().Err(err).Msg("chaincode construction failed")
	}
	if err := cc.Start(); err != nil {
		logger.Fatal().Err(err).Msg("chaincode stopped")
	}
}
