// Command session-replay sends the frames of a recorded session back to a
// stage daemon over UDP, paced like the original performance.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/glovestage/internal/db"
	"github.com/banshee-data/glovestage/internal/ingest"
)

var (
	dbPath    = flag.String("db", "glovestage.db", "Session database")
	sessionID = flag.String("session", "", "Session to replay (empty replays the latest)")
	target    = flag.String("target", fmt.Sprintf("127.0.0.1:%d", ingest.DefaultPort), "Stage UDP address")
	speed     = flag.Float64("speed", 1, "Replay speed multiplier; 0 sends as fast as possible")
	list      = flag.Bool("list", false, "List sessions and exit")
)

type sleeper func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// replay writes each payload to w, waiting out the recorded gaps scaled by
// 1/speed. It returns the number of frames sent.
func replay(ctx context.Context, w io.Writer, frames []db.FrameRecord, speed float64, sleep sleeper) (int, error) {
	sent := 0
	for i, f := range frames {
		if i > 0 && speed > 0 {
			gap := f.ReceivedAt.Sub(frames[i-1].ReceivedAt)
			if err := sleep(ctx, time.Duration(float64(gap)/speed)); err != nil {
				return sent, err
			}
		}
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if _, err := w.Write(f.Payload); err != nil {
			return sent, fmt.Errorf("send frame %d: %w", f.Seq, err)
		}
		sent++
	}
	return sent, nil
}

func printSessions(w io.Writer, database *db.DB) error {
	sessions, err := database.Sessions(0)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		ended := "open"
		if s.EndedAt != nil {
			ended = s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s  %s  %-6s  %6d frames  %s\n", s.ID, s.StartedAt.Format(time.RFC3339), s.Source, s.Frames, ended)
	}
	return nil
}

func main() {
	flag.Parse()

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to open %s: %v", *dbPath, err)
	}
	defer database.Close()

	if *list {
		if err := printSessions(os.Stdout, database); err != nil {
			log.Fatalf("failed to list sessions: %v", err)
		}
		return
	}

	var s db.Session
	if *sessionID == "" {
		s, err = database.LatestSession()
	} else {
		s, err = database.Session(*sessionID)
	}
	if err != nil {
		log.Fatalf("failed to find session: %v", err)
	}
	frames, err := database.SessionFrames(s.ID)
	if err != nil {
		log.Fatalf("failed to load frames: %v", err)
	}

	conn, err := net.Dial("udp", *target)
	if err != nil {
		log.Fatalf("failed to dial %s: %v", *target, err)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("replaying session %s (%d frames) to %s at %.2fx", s.ID, len(frames), *target, *speed)
	n, err := replay(ctx, conn, frames, *speed, sleepCtx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("replay stopped after %d frames: %v", n, err)
	}
	log.Printf("sent %d frames", n)
}
