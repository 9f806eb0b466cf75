// Package httpclient provides the HTTP plumbing used to deliver events to the
// ingestion endpoint.
//
// # Request Building
//
// Use [NewRequestBuilder] once per run with the target URL and any extra
// headers (for example an Authorization header):
//
//	builder, err := httpclient.NewRequestBuilder(url, map[string]string{
//		"Authorization": "Bearer " + token,
//	})
//	if err != nil {
//		return err
//	}
//	req, err := builder.Build(ctx, payload)
//
// Every request is a POST with Content-Type application/json.
//
// # HTTP Client
//
// [NewClient] creates a client with a total timeout, a connect timeout and a
// per-host connection pool sized by the caller:
//
//	client := httpclient.NewClient(httpclient.DefaultTimeout, httpclient.DefaultConnectTimeout, 2*concurrency)
//	resp, err := client.Do(req)
package httpclient
