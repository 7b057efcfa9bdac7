package stage

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"tailscale.com/tsweb"

	"github.com/banshee-data/glovestage/internal/httputil"
)

// AttachAdminRoutes registers the stage debug pages on mux under /debug/.
func (l *Loop) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.KVFunc("Stage ticks", func() any { return l.Snapshot().Ticks })
	debug.KVFunc("Frames superseded in mailbox", func() any { return l.Snapshot().Mailbox.Dropped })

	debug.HandleFunc("stage", "Render loop, mailbox and mapper counters (JSON)", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, l.Snapshot())
	})

	debug.HandleFunc("envelopes", "Configured envelope trajectories", func(w http.ResponseWriter, r *http.Request) {
		html, err := l.renderEnvelopeChart()
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(html)
	})
}

// renderEnvelopeChart plots every curve against time in milliseconds.
func (l *Loop) renderEnvelopeChart() ([]byte, error) {
	longest := 0
	for _, c := range l.curves {
		if len(c.Values) > longest {
			longest = len(c.Values)
		}
	}
	x := make([]string, longest)
	for i := range x {
		x[i] = strconv.FormatInt((l.interval * time.Duration(i)).Milliseconds(), 10)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Stage envelopes", Theme: "dark", Width: "1100px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Envelope trajectories", Subtitle: fmt.Sprintf("step=%v curves=%d", l.interval, len(l.curves))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "ms", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "value"}),
	)
	line.SetXAxis(x)
	for _, c := range l.curves {
		data := make([]opts.LineData, len(c.Values))
		for i, v := range c.Values {
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(c.Name, data)
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
