package main

import (
	"net/http"

	"faturas/extraction"
	"faturas/metrics"
)

func SetupRoutes(mux *http.ServeMux, ctrl *extraction.Controller, m *metrics.Extraction) {
	mux.HandleFunc("/api/config", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			GetConfigHandler()(w, r)
		case http.MethodPost:
			SaveConfigHandler()(w, r)
		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/extraction/start", ctrl.StartHandler())
	mux.HandleFunc("/api/extraction/stop", ctrl.StopHandler())
	mux.HandleFunc("/api/extraction/status", ctrl.StatusHandler())
	mux.HandleFunc("/api/extraction/runs", ctrl.RunsHandler())
	mux.HandleFunc("/api/extraction/report.xlsx", ctrl.ReportXLSXHandler())

	mux.Handle("/metrics", m.Handler())
}
