// Package api hosts the operator HTTP surface that runs alongside recurring crawls:
//   - GET /healthz for liveness.
//   - GET /readyz, which pings the content database.
//   - GET /metrics for Prometheus scraping.
package api
