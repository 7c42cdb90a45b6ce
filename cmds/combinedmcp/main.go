// combinedmcp serves the GitLab and SharePoint tool sets from one MCP
// server, matching what the chat front end expects from MCP_SERVER_URL.
package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog/log"

	"opschat/config"
	"opschat/gitlab"
	"opschat/mcpserver"
	"opschat/service"
	"opschat/sharepoint"
)

func main() {
	transport := flag.String("transport", "http", "transport to serve on: stdio or http")
	host := flag.String("host", "0.0.0.0", "address to bind to (http transport)")
	port := flag.Int("port", 8083, "port to bind to (http transport)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("configuration error")
		os.Exit(1)
	}

	glTools := service.NewGitLabTools(gitlab.NewClient(cfg.GitLab), cfg.GitLab.ProjectIDs)
	endpoints := glTools.Endpoints()
	var spTools *service.SharePointTools
	if cfg.SharePoint != nil {
		spTools = service.NewSharePointTools(sharepoint.NewClient(*cfg.SharePoint), cfg.SharePoint.DefaultLists)
		endpoints = append(endpoints, spTools.Endpoints()...)
	} else {
		log.Warn().Msg("SharePoint not configured, serving GitLab tools only")
	}
	endpoints = append(endpoints, service.CombinedHealthTool(glTools, spTools))

	srv, err := mcpserver.New("opschat-mcp", "1.0.0", endpoints)
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
