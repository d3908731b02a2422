package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kevinpollet/nego"
	"github.com/ridge/must/v2"
	"github.com/ridge/reqlog/diag"
	"github.com/ridge/reqlog/sink/sqltable"
	"github.com/ridge/reqlog/thttp"
	"github.com/ridge/reqlog/tlog"
	"go.uber.org/zap"
)

const (
	defaultRecent = 50
	maxRecent     = 1000

	contentTypeJSON = "application/json"
	contentTypeText = "text/plain; charset=utf-8"
)

type recentReader interface {
	Recent(ctx context.Context, limit int) ([]sqltable.Row, error)
}

// logsHandler serves the newest rows of the log table, as JSON or as text
// lines depending on Accept. ?limit= caps the number of rows.
func logsHandler(table recentReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		limit := defaultRecent
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > maxRecent {
				err = fmt.Errorf("limit must be an integer in [1, %d]", maxRecent)
				diag.SetError(ctx, err)
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			limit = n
		}

		contentType := contentTypeJSON
		if r.Header.Get("Accept") != "" {
			contentType = nego.NegotiateContentType(r, contentTypeJSON, contentTypeText)
		}
		if contentType == "" {
			http.Error(w, "supported formats: application/json, text/plain", http.StatusNotAcceptable)
			return
		}

		rows, err := table.Recent(ctx, limit)
		if err != nil {
			diag.SetError(ctx, err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		diag.Set(ctx, "RowCount", len(rows))

		var body []byte
		if contentType == contentTypeText {
			body = formatRows(rows)
		} else {
			if rows == nil {
				rows = []sqltable.Row{}
			}
			body = must.OK1(json.Marshal(rows))
		}
		if err := thttp.WriteCompressible(w, r, contentType, http.StatusOK, body); err != nil {
			tlog.Get(ctx).Debug("Failed to write response", zap.Error(err))
		}
	}
}

func formatRows(rows []sqltable.Row) []byte {
	var b strings.Builder
	for _, row := range rows {
		fmt.Fprintf(&b, "%s [%s] %s\n", row.TimeStamp.UTC().Format(time.RFC3339Nano), row.Level, row.Message)
		if row.Exception != "" {
			fmt.Fprintf(&b, "\t%s\n", strings.ReplaceAll(row.Exception, "\n", "\n\t"))
		}
	}
	return []byte(b.String())
}
