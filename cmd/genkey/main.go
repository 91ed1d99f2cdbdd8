// genkey prints a fresh API key secret and its bcrypt hash, for
// seeding an admin credential or inserting a key row by hand.
package main

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/super3/nilo.chat-sub000/internal/handlers"
)

func main() {
	secret, err := handlers.GenerateSecret()
	if err != nil {
		panic(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}

	fmt.Printf("API key:     %s\n", secret)
	fmt.Printf("bcrypt hash: %s\n", hash)
}
