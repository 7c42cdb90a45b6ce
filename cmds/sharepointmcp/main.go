// sharepointmcp exposes the SharePoint tool set over the Model Context
// Protocol, either on stdio or as an SSE endpoint.
package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog/log"

	"opschat/config"
	"opschat/mcpserver"
	"opschat/service"
	"opschat/sharepoint"
)

func main() {
	transport := flag.String("transport", "stdio", "transport to serve on: stdio or http")
	host := flag.String("host", "0.0.0.0", "address to bind to (http transport)")
	port := flag.Int("port", 8082, "port to bind to (http transport)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("configuration error")
		os.Exit(1)
	}
	if cfg.SharePoint == nil {
		log.Error().Msg("SHAREPOINT_SITE_URL is required for the SharePoint server")
		os.Exit(1)
	}

	tools := service.NewSharePointTools(sharepoint.NewClient(*cfg.SharePoint), cfg.SharePoint.DefaultLists)
	srv, err := mcpserver.New("sharepoint-mcp", "1.0.0", tools.Endpoints())
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		os.Exit(1)
	}

	var serveErr error
	if *transport == "http" {
		serveErr = srv.ServeHTTP(*host, *port)
	} else {
		serveErr = srv.ServeStdio()
	}
	if serveErr != nil {
		log.Error().Err(serveErr).Msg("server stopped")
		os.Exit(1)
	}
}
