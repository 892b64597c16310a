// Command treasuryctl is the operator CLI for administering a treasuryd
// instance out-of-band: generating and escrowing the admin signing key, and
// issuing caller-attestation tokens for local testing.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"treasuryvault/crypto"
	"treasuryvault/rpc"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "genkey":
		err = runGenkey(os.Args[2:])
	case "keystore-export":
		err = runKeystoreExport(os.Args[2:])
	case "keystore-import":
		err = runKeystoreImport(os.Args[2:])
	case "issue-token":
		err = runIssueToken(os.Args[2:])
	case "archive-export":
		err = runArchiveExport(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "treasuryctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: treasuryctl <command> [flags]

commands:
  genkey                      generate a new admin signing key
  keystore-export             encrypt a hex-encoded key into an Ethereum v3 keystore file
  keystore-import             decrypt a keystore file and print the raw key
  issue-token                 mint an HS256 caller-attestation JWT for local testing
  archive-export               snapshot proposals and reputation records to parquet for cold storage`)
}

func runGenkey(args []string) error {
	fs := flag.NewFlagSet("genkey", flag.ExitOnError)
	fs.Parse(args)

	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	fmt.Printf("address: %s\n", key.PubKey().Address().String())
	fmt.Printf("private_key: %s\n", hex.EncodeToString(key.Bytes()))
	return nil
}

func runKeystoreExport(args []string) error {
	fs := flag.NewFlagSet("keystore-export", flag.ExitOnError)
	keyHex := fs.String("key", "", "hex-encoded private key")
	out := fs.String("out", "", "destination keystore file path")
	passEnv := fs.String("passphrase-env", "TREASURYCTL_PASSPHRASE", "environment variable holding the passphrase")
	fs.Parse(args)

	if *keyHex == "" || *out == "" {
		return fmt.Errorf("keystore-export requires -key and -out")
	}
	raw, err := hex.DecodeString(*keyHex)
	if err != nil {
		return fmt.Errorf("invalid -key: %w", err)
	}
	key, err := crypto.PrivateKeyFromBytes(raw)
	if err != nil {
		return err
	}

	passphrase, err := newPassphraseSource(*passEnv).Get()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(*out, key, passphrase); err != nil {
		return err
	}
	fmt.Printf("wrote keystore for %s to %s\n", key.PubKey().Address().String(), *out)
	return nil
}

func runKeystoreImport(args []string) error {
	fs := flag.NewFlagSet("keystore-import", flag.ExitOnError)
	path := fs.String("path", "", "keystore file path")
	passEnv := fs.String("passphrase-env", "TREASURYCTL_PASSPHRASE", "environment variable holding the passphrase")
	fs.Parse(args)

	if *path == "" {
		return fmt.Errorf("keystore-import requires -path")
	}
	passphrase, err := newPassphraseSource(*passEnv).Get()
	if err != nil {
		return err
	}
	key, err := crypto.LoadFromKeystore(*path, passphrase)
	if err != nil {
		return err
	}
	fmt.Printf("address: %s\n", key.PubKey().Address().String())
	fmt.Printf("private_key: %s\n", hex.EncodeToString(key.Bytes()))
	return nil
}

func runIssueToken(args []string) error {
	fs := flag.NewFlagSet("issue-token", flag.ExitOnError)
	secret := fs.String("secret", "", "HMAC secret configured as Auth.HMACSecret")
	address := fs.String("address", "", "caller address to attest")
	issuer := fs.String("issuer", "treasuryd", "JWT issuer claim")
	audience := fs.String("audience", "treasuryd-clients", "JWT audience claim")
	ttl := fs.Duration("ttl", time.Hour, "token validity duration")
	fs.Parse(args)

	if *secret == "" || *address == "" {
		return fmt.Errorf("issue-token requires -secret and -address")
	}
	addr, err := crypto.DecodeAddress(*address)
	if err != nil {
		return fmt.Errorf("invalid -address: %w", err)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss": *issuer,
		"aud": *audience,
		"iat": now.Unix(),
		"exp": now.Add(*ttl).Unix(),
	}
	token, err := rpc.IssueToken([]byte(*secret), addr, claims)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
