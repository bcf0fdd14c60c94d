package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/rasterq/rasterq/internal/footprint"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve /query and /metrics over HTTP for a sample raster",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addSampleRasterFlags(serveCmd)
	serveCmd.Flags().String("addr", "127.0.0.1:8080", "listen address (host:port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	opened, err := openSampleDataset(cmd)
	if err != nil {
		return err
	}
	defer opened.ds.Close()

	addr, _ := cmd.Flags().GetString("addr")

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(opened.ds.Metrics().Gatherer(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/query", queryHandler(opened))

	logger.Info().Str("addr", addr).Msg("rasterserve listening")

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return srv.ListenAndServe()
}

type queryResponse struct {
	Rows  int       `json:"rows"`
	Cols  int       `json:"cols"`
	Bands int       `json:"bands"`
	Data  []float64 `json:"data"`
}

// queryHandler serves a single-footprint GetData call: the requested
// footprint is described the same way footprint.New takes it, in query
// params (ox, oy, sx, sy, rows, cols), plus an optional band index
// (-1, the default, requests every channel).
func queryHandler(opened *openedDataset) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		ox, e1 := strconv.ParseFloat(q.Get("ox"), 64)
		oy, e2 := strconv.ParseFloat(q.Get("oy"), 64)
		sx, e3 := strconv.ParseFloat(q.Get("sx"), 64)
		sy, e4 := strconv.ParseFloat(q.Get("sy"), 64)
		rows, e5 := strconv.Atoi(q.Get("rows"))
		cols, e6 := strconv.Atoi(q.Get("cols"))
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil || e6 != nil {
			http.Error(w, "ox, oy, sx, sy, rows, cols are required", http.StatusBadRequest)
			return
		}
		band := -1
		if s := q.Get("band"); s != "" {
			b, err := strconv.Atoi(s)
			if err != nil {
				http.Error(w, "band must be an integer", http.StatusBadRequest)
				return
			}
			band = b
		}

		fp := footprint.New(ox, oy, sx, sy, rows, cols)
		arr, err := opened.raster.GetData(fp, band)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		resp := queryResponse{Rows: arr.Rows, Cols: arr.Cols, Bands: arr.Bands, Data: arr.Data}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
