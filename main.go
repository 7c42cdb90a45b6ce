// opschat is a chat front end for GitLab and SharePoint: it routes
// natural-language queries to the right domain agent, which answers by
// calling the underlying REST APIs as tools.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"opschat/agent"
	"opschat/config"
	"opschat/gitlab"
	"opschat/mcpclient"
	"opschat/orchestrator"
	"opschat/service"
	"opschat/sharepoint"
	"opschat/ui"
)

func main() {
	host := flag.String("host", "0.0.0.0", "address to bind the web UI to")
	port := flag.Int("port", 8080, "port to bind the web UI to")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("configuration error")
		os.Exit(1)
	}

	ctx := context.Background()
	glDispatch, spDispatch, cleanup, err := buildDispatchers(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		os.Exit(1)
	}
	defer cleanup()

	var completer agent.Completer
	if cfg.OpenAI.APIKey != "" {
		completer = newOpenAIClient(cfg.OpenAI)
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, using keyword-based tool selection")
	}

	gitlabAgent := agent.NewGitLabAgent(completer, cfg.OpenAI.Model, glDispatch, true)
	var sharepointAgent orchestrator.DomainAgent
	if spDispatch != nil {
		sharepointAgent = agent.NewSharePointAgent(completer, cfg.OpenAI.Model, spDispatch, true)
	}

	orch := orchestrator.New(gitlabAgent, sharepointAgent)
	server := ui.NewServer(orch)

	addr := fmt.Sprintf("%s:%d", *host, *port)
	log.Info().Str("addr", addr).Msg("web UI listening")
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := httpSrv.ListenAndServe(); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

// buildDispatchers registers the tool endpoints the agents dispatch to.
// With MCP_SERVER_URL or MCP_SERVER_CMD set the tools come from an MCP
// server; otherwise the REST clients are wired in-process.
func buildDispatchers(ctx context.Context, cfg *config.Config) (gl, sp *service.Dispatcher, cleanup func(), err error) {
	cleanup = func() {}

	// MCP_SERVER_URL attaches over SSE; MCP_SERVER_CMD spawns a server
	// speaking MCP on its stdio.
	if serverURL := os.Getenv("MCP_SERVER_URL"); serverURL != "" {
		return buildRemoteDispatchers(ctx, func(mgr *mcpclient.ClientMgr) error {
			return mgr.ConnectSSE(ctx, serverURL)
		})
	}
	if parts := strings.Fields(os.Getenv("MCP_SERVER_CMD")); len(parts) > 0 {
		return buildRemoteDispatchers(ctx, func(mgr *mcpclient.ClientMgr) error {
			return mgr.ConnectStdio(ctx, parts[0], os.Environ(), parts[1:]...)
		})
	}

	gl = service.NewDispatcher()
	glTools := service.NewGitLabTools(gitlab.NewClient(cfg.GitLab), cfg.GitLab.ProjectIDs)
	if err := gl.Register(glTools.Endpoints()...); err != nil {
		return nil, nil, cleanup, err
	}

	if cfg.SharePoint != nil {
		sp = service.NewDispatcher()
		spTools := service.NewSharePointTools(sharepoint.NewClient(*cfg.SharePoint), cfg.SharePoint.DefaultLists)
		if err := sp.Register(spTools.Endpoints()...); err != nil {
			return nil, nil, cleanup, err
		}
	}
	return gl, sp, cleanup, nil
}

func buildRemoteDispatchers(ctx context.Context, connect func(*mcpclient.ClientMgr) error) (gl, sp *service.Dispatcher, cleanup func(), err error) {
	mgr := mcpclient.NewClientMgr()
	cleanup = func() {
		if err := mgr.Close(); err != nil {
			log.Warn().Err(err).Msg("closing MCP clients")
		}
	}
	if err := connect(mgr); err != nil {
		return nil, nil, cleanup, err
	}
	endpoints, err := mgr.LoadAllTools(ctx)
	if err != nil {
		return nil, nil, cleanup, err
	}

	gl = service.NewDispatcher()
	var spEndpoints []service.ToolEndPoint
	for _, ep := range endpoints {
		if strings.Contains(ep.Name, "sharepoint") {
			spEndpoints = append(spEndpoints, ep)
			continue
		}
		if err := gl.Register(ep); err != nil {
			return nil, nil, cleanup, err
		}
	}
	// Remote servers carry their own credentials, so the SharePoint
	// side is wired whenever the server exposes its tools.
	if len(spEndpoints) > 0 {
		sp = service.NewDispatcher()
		if err := sp.Register(spEndpoints...); err != nil {
			return nil, nil, cleanup, err
		}
	}
	log.Info().Int("tools", len(endpoints)).Msg("loaded remote tools")
	return gl, sp, cleanup, nil
}

func newOpenAIClient(cfg config.OpenAI) *openai.Client {
	if cfg.BaseURL != "" {
		cc := openai.DefaultConfig(cfg.APIKey)
		cc.BaseURL = cfg.BaseURL
		return openai.NewClientWithConfig(cc)
	}
	return openai.NewClient(cfg.APIKey)
}
