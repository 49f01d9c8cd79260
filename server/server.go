// Package server serves the outputs of one run over HTTP.
package server

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jamespfennell/gtfsgo/export"
)

type Options struct {
	// AllowedOrigins are the origins allowed to request the collections from a browser.
	AllowedOrigins []string
}

// New returns a handler serving each part of the result under the file name it is exported with.
// Parts missing from the result are answered with 404.
func New(result export.Result, options Options) (http.Handler, error) {
	encoded, err := result.Encode()
	if err != nil {
		return nil, err
	}
	documents := map[string]export.Document{}
	for _, d := range encoded {
		documents[d.Name] = d
	}

	r := chi.NewRouter()
	if len(options.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: options.AllowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}))
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/{name}", func(w http.ResponseWriter, r *http.Request) {
		d, ok := documents[chi.URLParam(r, "name")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", d.ContentType)
		if _, err := w.Write(d.Content); err != nil {
			log.Printf("Failed to write response for %s: %s", r.URL.Path, err)
		}
	})
	return r, nil
}
