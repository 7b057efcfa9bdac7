package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/banshee-data/glovestage/internal/config"
	"github.com/banshee-data/glovestage/internal/db"
	"github.com/banshee-data/glovestage/internal/frame"
	"github.com/banshee-data/glovestage/internal/ingest"
	"github.com/banshee-data/glovestage/internal/mailbox"
	"github.com/banshee-data/glovestage/internal/mapper"
	"github.com/banshee-data/glovestage/internal/monitoring"
	"github.com/banshee-data/glovestage/internal/sink"
	"github.com/banshee-data/glovestage/internal/stage"
	"github.com/banshee-data/glovestage/internal/version"
)

var (
	configPath   = flag.String("config", "", "Stage tuning JSON (empty uses built-in defaults)")
	listen       = flag.String("listen", fmt.Sprintf(":%d", ingest.DefaultPort), "UDP address to receive sensor frames on")
	sourceKind   = flag.String("source", "udp", "Frame source: udp, serial or pcap")
	serialPort   = flag.String("serial-port", "/dev/ttyUSB0", "Serial device for -source=serial")
	serialBaud   = flag.Int("serial-baud", 115200, "Baud rate for -source=serial")
	pcapFile     = flag.String("pcap", "", "Capture file for -source=pcap")
	pcapRealtime = flag.Bool("pcap-realtime", true, "Pace PCAP replay by capture timestamps")
	oscHost      = flag.String("osc-host", "127.0.0.1", "Visualization host receiving OSC")
	oscPort      = flag.Int("osc-port", 9000, "OSC port on the visualization host")
	forwardAddr  = flag.String("forward", "", "Forward raw frames to host:port (empty disables)")
	grpcListen   = flag.String("grpc-listen", "", "Stream sink updates to gRPC subscribers on this TCP address (empty disables)")
	dbPath       = flag.String("db", "", "Record sessions to this sqlite file (empty disables)")
	debugListen  = flag.String("debug-listen", "127.0.0.1:8081", "Debug HTTP listen address (empty disables)")
	showVersion  = flag.Bool("version", false, "Print version and exit")
	traceFrames  = flag.Bool("trace", false, "Log every received and applied frame")
)

func loadConfig(path string) (*config.StageConfig, error) {
	if path == "" {
		return config.DefaultStageConfig(), nil
	}
	return config.LoadStageConfig(path)
}

// newSource builds the configured frame source. Forwarding is attached to
// the listener for UDP and to the publisher tap otherwise.
func newSource(kind string, pub *ingest.Publisher, stats *ingest.PacketStats, fwd *ingest.PacketForwarder) (ingest.Source, error) {
	switch kind {
	case "udp":
		return ingest.NewUDPListener(ingest.UDPListenerConfig{
			Address:   *listen,
			RcvBuf:    1 << 20,
			Stats:     stats,
			Forwarder: fwd,
			Publisher: pub,
		}), nil
	case "serial":
		if *serialPort == "" {
			return nil, errors.New("-serial-port is required for -source=serial")
		}
		tapForward(pub, fwd)
		return ingest.NewSerialSource(*serialPort, ingest.PortOptions{BaudRate: *serialBaud}, nil, pub, stats), nil
	case "pcap":
		if *pcapFile == "" {
			return nil, errors.New("-pcap is required for -source=pcap")
		}
		tapForward(pub, fwd)
		return &ingest.PCAPReplay{
			Path:     *pcapFile,
			Port:     ingest.DefaultPort,
			Realtime: *pcapRealtime,
			Pub:      pub,
			Stats:    stats,
		}, nil
	default:
		return nil, fmt.Errorf("unknown -source %q (want udp, serial or pcap)", kind)
	}
}

func tapForward(pub *ingest.Publisher, fwd *ingest.PacketForwarder) {
	if fwd == nil {
		return
	}
	pub.WithTap(func(d *frame.Datagram) { fwd.ForwardAsync(d.Payload) })
}

func main() {
	flag.Parse()

	// Set when a source fails fatally; applied after every other defer.
	var exitCode atomic.Int32
	defer func() {
		if c := exitCode.Load(); c != 0 {
			os.Exit(int(c))
		}
	}()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	log.Printf("starting %s", version.String())
	if *traceFrames {
		monitoring.SetLogWriters(os.Stderr, os.Stderr, os.Stderr)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	oscOut, err := sink.NewOSCSink(*oscHost, *oscPort)
	if err != nil {
		log.Fatalf("failed to create OSC sink: %v", err)
	}
	defer oscOut.Close()

	var out sink.Sink = oscOut
	var stream *sink.GRPCSink
	var grpcLis net.Listener
	if *grpcListen != "" {
		grpcLis, err = net.Listen("tcp", *grpcListen)
		if err != nil {
			log.Fatalf("failed to listen for gRPC subscribers: %v", err)
		}
		stream = sink.NewGRPCSink(sink.DefaultGRPCBuffer)
		out = sink.Fanout{oscOut, stream}
	}

	m, err := mapper.NewFromConfig(cfg, out)
	if err != nil {
		log.Fatalf("failed to build scene: %v", err)
	}

	box := mailbox.New[*frame.Datagram]()
	pub := ingest.NewPublisher(box, nil)
	stats := ingest.NewPacketStats()

	var fwd *ingest.PacketForwarder
	if *forwardAddr != "" {
		fwd, err = ingest.NewPacketForwarder(*forwardAddr, stats, time.Minute)
		if err != nil {
			log.Fatalf("failed to create forwarder: %v", err)
		}
		defer fwd.Close()
	}

	src, err := newSource(*sourceKind, pub, stats, fwd)
	if err != nil {
		log.Fatalf("invalid source: %v", err)
	}
	if l, ok := src.(*ingest.UDPListener); ok {
		// Bind up front so a port conflict fails before anything starts.
		if err := l.Bind(); err != nil {
			log.Fatalf("failed to start UDP listener: %v", err)
		}
	}

	loop := stage.NewLoop(stage.LoopConfig{Mailbox: box, Mapper: m, Interval: cfg.GetTickInterval()})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var database *db.DB
	if *dbPath != "" {
		database, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("failed to open session database: %v", err)
		}
		defer database.Close()

		cfgJSON, _ := json.Marshal(cfg)
		sessionID, err := database.StartSession(*sourceKind, string(cfgJSON), time.Now())
		if err != nil {
			log.Fatalf("failed to start session: %v", err)
		}
		log.Printf("recording session %s to %s", sessionID, *dbPath)

		rec := db.NewRecorder(database, sessionID, db.RecorderOptions{})
		loop.Dispatcher().OnFrame(rec.Record)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rec.Run(ctx); err != nil {
				log.Printf("session recorder error: %v", err)
			}
			if err := database.EndSession(sessionID, time.Now()); err != nil {
				log.Printf("failed to close session: %v", err)
			}
			st := rec.Stats()
			log.Printf("session recorder stopped: written=%d dropped=%d failed=%d", st.Written, st.Dropped, st.Failed)
		}()
	}

	// The source ending on its own (EOF, end of capture) does not stop the
	// stage; only a fatal error does.
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := src.Run(ctx)
		switch {
		case err == nil, errors.Is(err, context.Canceled):
			log.Printf("%s source stopped", *sourceKind)
		case errors.Is(err, ingest.ErrBind):
			log.Printf("fatal source error: %v", err)
			exitCode.Store(1)
			stop()
		default:
			log.Printf("%s source error: %v", *sourceKind, err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("render loop error: %v", err)
		}
		log.Print("render loop terminated")
	}()

	if stream != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()

			server := grpc.NewServer()
			stream.Register(server)
			go func() {
				log.Printf("gRPC sink listening on %s", grpcLis.Addr())
				if err := server.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
					log.Printf("gRPC server error: %v", err)
				}
			}()

			<-ctx.Done()
			stream.Close()
			server.GracefulStop()
			log.Printf("gRPC sink stopped: published=%d dropped=%d", stream.Published(), stream.Dropped())
		}()
	}

	if *debugListen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()

			mux := http.NewServeMux()
			loop.AttachAdminRoutes(mux)
			if database != nil {
				if err := database.AttachAdminRoutes(mux); err != nil {
					log.Printf("failed to attach database routes: %v", err)
				}
			}

			server := &http.Server{
				Addr:    *debugListen,
				Handler: mux,
			}
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Printf("debug server error: %v", err)
				}
			}()

			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("debug server shutdown error: %v", err)
				if err := server.Close(); err != nil {
					log.Printf("debug server force close error: %v", err)
				}
			}
			log.Printf("debug server stopped")
		}()
	}

	wg.Wait()
	log.Printf("graceful shutdown complete")
}
