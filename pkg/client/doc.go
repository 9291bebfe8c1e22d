// Package client provides the embedder-facing entry point for Callisto.
//
// A Client is an explicit context object owning every collaborator:
// encryption engine, redactor, attachment service, durable pending and
// replay stores, policy cache, and delivery coordinator. Construction
// is explicit and the embedder owns the lifecycle; there is no global
// singleton.
//
// # Usage
//
//	cfg, err := config.LoadConfigWithEnvOverrides("callisto.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	c, err := client.NewClient(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	// From the instrumentation hook, on a failed request:
//	result, err := c.CaptureFailure(ctx, &client.Report{
//	    Method:       "POST",
//	    URL:          "https://api.example.com/orders",
//	    StatusCode:   502,
//	    ErrorKind:    "http_error",
//	    ErrorMessage: "bad gateway",
//	    Duration:     340 * time.Millisecond,
//	})
//
// Captured failures are redacted, encrypted, and handed to the delivery
// coordinator; an unreachable collector turns the event into a durable
// pending row retried with exponential backoff across process restarts.
// Successful requests can be sampled with CaptureSuccess.
//
// # Multipart capture
//
// For outgoing multipart requests, pass the body stream and content
// type in the Report. Binary parts are extracted into encrypted blobs
// and the returned CaptureResult carries a rebuilt body that must
// replace the original, which has been consumed:
//
//	result, _ := c.CaptureFailure(ctx, &client.Report{
//	    Method:        "POST",
//	    URL:           uploadURL,
//	    MultipartBody: body,
//	    ContentType:   contentType,
//	})
//	if result.RebuiltBody != nil {
//	    body = bytes.NewReader(result.RebuiltBody)
//	    contentType = result.RebuiltContentType
//	}
//
// # Replay
//
// When the cached remote policy enables replay, failures are also kept
// in a plaintext local store. CheckForReplay polls for server-requested
// replays, ExecuteReplay re-issues the stored request and reports the
// outcome, and OnReplaySuccess registers a single-shot continuation
// for workflows that need the replay response.
package client
