package main

import "github.com/example/telemetry-sdk/internal/influx"

// ResultResponse is the reply to ingest calls and errors
type ResultResponse struct {
	Result string `json:"result" example:"Success"`
}

// RequestsResponse represents the response for the requests endpoint
type RequestsResponse struct {
	Count    int                    `json:"count" example:"2"`
	Requests []influx.RequestRecord `json:"requests"`
}
