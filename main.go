//	@title			Kaliun Connect API
//	@version		1.0
//	@description	Device credential lifecycle and claim-binding service with an OAuth 2.0 Device Authorization Grant (RFC 8628) broker
//	@BasePath		/

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Type "Bearer" followed by a space and the token.

//	@securityDefinitions.apikey	SessionAuth
//	@in							cookie
//	@name						kaliun_session
//	@description				Session cookie for authenticated users

package main

import (
	"flag"
	"log"
	"os"

	"github.com/SkullXA/kaliun-connect-api/internal/bootstrap"
	"github.com/SkullXA/kaliun-connect-api/internal/config"
	"github.com/SkullXA/kaliun-connect-api/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showVersion {
		version.PrintVersion()
		os.Exit(0)
	}

	cfg := config.Load()
	if err := bootstrap.Run(cfg); err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
}
