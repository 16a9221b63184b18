package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/uwbtools/dwmctl/internal/config"
	"github.com/uwbtools/dwmctl/internal/deviceconfig"
	"github.com/uwbtools/dwmctl/internal/server"
)

var (
	servePlanPath   string
	serveListen     string
	serveInterval   time.Duration
	serveNoAnnounce bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&servePlanPath, "plan", "", "Network plan naming the tags to poll (required)")
	serveCmd.Flags().StringVar(&serveListen, "listen", ":8734", "Listen address")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", time.Second, "Tag polling period")
	serveCmd.Flags().BoolVar(&serveNoAnnounce, "no-announce", false, "Do not register the gateway on mDNS")
	_ = serveCmd.MarkFlagRequired("plan")
}

// serveCmd runs the location gateway
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the location gateway",
	Long: `Poll the plan's tags for location data and stream position fixes to
WebSocket subscribers.

Endpoints:
  /ws         WebSocket stream of position updates (JSON)
  /positions  latest known position of every tag
  /healthz    liveness probe

Unless --no-announce is given the gateway registers itself on mDNS as
"` + server.ServiceType + `" so dashboards can find it.`,
	Example: `  # Stream positions for the tags in site.yaml
  dwmctl serve --plan site.yaml

  # Faster polling on a custom port
  dwmctl serve --plan site.yaml --listen :9000 --interval 500ms`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	plan, err := config.LoadPlan(servePlanPath)
	if err != nil {
		return err
	}

	tags, err := server.TagsFromPlan(plan)
	if err != nil {
		return err
	}

	t, err := newTransport()
	if err != nil {
		return err
	}

	gw, err := server.New(&server.Config{
		Listen:   serveListen,
		Interval: serveInterval,
		Announce: !serveNoAnnounce,
	}, deviceconfig.NewClient(t), tags)
	if err != nil {
		return err
	}

	// Blocks until a shutdown signal or listener error
	return gw.Start()
}
