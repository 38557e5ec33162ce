// devtoken signs a companion app style JWT for local testing. Without
// DEV_PRIVATE_KEY it generates a key pair and prints the JWT_PUBLIC_KEY line
// the server needs to accept the token.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-device-link/identity/keys"
	"github.com/jrsteele09/go-device-link/internal/config"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

func main() {
	_ = godotenv.Load()

	userID := flag.String("user", uuid.NewString(), "user_id claim")
	deviceIDs := flag.String("devices", uuid.NewString(), "comma separated user_device_ids")
	developerID := flag.String("developer", config.GetEnv("MY_DEVELOPER_ID", "dev-developer"), "developer_id claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	keyPair, generated, err := loadOrGenerateKeyPair()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ids := lo.Compact(lo.Map(strings.Split(*deviceIDs, ","), func(id string, _ int) string {
		return strings.TrimSpace(id)
	}))

	now := time.Now()
	token, err := keys.NewKeyPairSigner(keyPair).Sign(jwtlib.MapClaims{
		"user_id":         *userID,
		"user_device_ids": ids,
		"developer_id":    *developerID,
		"iat":             now.Unix(),
		"exp":             now.Add(*ttl).Unix(),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if generated {
		publicPEM, err := keyPair.ExportPublicKeyPEM()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("JWT_PUBLIC_KEY=\"%s\"\n", strings.ReplaceAll(strings.TrimSpace(publicPEM), "\n", `\n`))
		fmt.Printf("MY_DEVELOPER_ID=%s\n\n", *developerID)
	}
	fmt.Println(token)
}

func loadOrGenerateKeyPair() (*keys.KeyPair, bool, error) {
	if privatePEM := os.Getenv("DEV_PRIVATE_KEY"); privatePEM != "" {
		keyPair, err := keys.LoadKeyPairFromPEM("dev", privatePEM)
		return keyPair, false, err
	}
	keyPair, err := keys.GenerateRSAKeyPair("dev", 2048)
	return keyPair, true, err
}
