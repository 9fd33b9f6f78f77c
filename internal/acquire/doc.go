// Package acquire downloads the current picker selection into the local
// cache.
//
// Pipeline.FetchAndCache lists every selected item, classifies each as image
// or video, downloads the offline-sized image or the video stream through the
// authorized executor with bounded parallelism, converts images a browser
// cannot render, and replaces the cache index in one step. Per-item failures
// are logged and skipped; only listing, an empty selection, or local
// persistence failures end the run. The picking session is consumed on every
// exit path.
package acquire
