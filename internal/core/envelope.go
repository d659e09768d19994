package core

// Envelope is the uniform response body for every path through the dispatch
// engine: synchronous results, queue acknowledgments, rejections, and the
// terminal payload delivered to webhooks and the status sink.
type Envelope struct {
	Code     int    `json:"code"`
	ID       string `json:"id"`
	JobID    string `json:"jobId"`
	Response any    `json:"response"`
	Message  string `json:"message"`

	// Timings are in seconds. QueueTime is always 0 on the synchronous path.
	RunTime   float64 `json:"runTime"`
	QueueTime float64 `json:"queueTime"`
	TotalTime float64 `json:"totalTime"`

	WorkerID    string `json:"workerId"`
	QueueLength int    `json:"queueLength"`
	BuildNumber string `json:"buildNumber"`

	// MaxQueueLength is set on admission responses only; it holds either the
	// configured integer cap or the string "unlimited".
	MaxQueueLength any `json:"maxQueueLength,omitempty"`
}
