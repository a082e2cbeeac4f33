// Command vapidkeys prints a fresh VAPID key pair as a config snippet.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/SherClockHolmes/webpush-go"
	"gopkg.in/yaml.v3"
)

type pushKeys struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
}

func main() {
	envFormat := flag.Bool("env", false, "print VAPID_PUBLIC_KEY/VAPID_PRIVATE_KEY lines for a .env file")
	flag.Parse()

	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		log.Fatalf("failed to generate VAPID keys: %v", err)
	}

	if *envFormat {
		fmt.Printf("VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", publicKey, privateKey)
		return
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]pushKeys{"push": {PublicKey: publicKey, PrivateKey: privateKey}}); err != nil {
		log.Fatalf("failed to encode keys: %v", err)
	}
}
