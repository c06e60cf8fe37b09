// issue-token mints a JWT for calling the API during development.
//
// Usage (from backend directory):
//   API_SECRET=... TOKEN_HOUR_LIFESPAN=24 go run ./cmd/issue-token -user 1 -role Admin
package main

import (
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/rma_backend/utils"
)

func main() {
	userId := flag.Int("user", 1, "user id to embed in the token")
	role := flag.String("role", "Admin", "role claim")
	flag.Parse()

	token, err := utils.JwtGenerate(*userId, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
