// gitlabmcp exposes the GitLab tool set over the Model Context Protocol,
// either on stdio or as an SSE endpoint.
package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog/log"

	"opschat/config"
	"opschat/gitlab"
	"opschat/mcpserver"
	"opschat/service"
)

func main() {
	transport := flag.String("transport", "stdio", "transport to serve on: stdio or http")
	host := flag.String("host", "0.0.0.0", "address to bind to (http transport)")
	port := flag.Int("port", 8081, "port to bind to (http transport)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("configuration error")
		os.Exit(1)
	}

	tools := service.NewGitLabTools(gitlab.NewClient(cfg.GitLab), cfg.GitLab.ProjectIDs)
	srv, err := mcpserver.New("gitlab-mcp", "1.0.0", tools.Endpoints())
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		os.Exit(1)
	}

	if err := serve(srv, *transport, *host, *port); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

func serve(srv *mcpserver.Server, transport, host string, port int) error {
	if transport == "http" {
		return srv.ServeHTTP(host, port)
	}
	return srv.ServeStdio()
}
