package broker

import "testing"

func TestQueueNamesMatchRoutingKeys(t *testing.T) {
	// Per spec §6 every queue is bound with a routing key identical to
	// its own name; topology declaration depends on this equality.
	for _, tc := range []struct{ queue, routingKey string }{
		{QueueDocumentsPending, "documents.pending"},
		{QueueDocumentsDownloaded, "documents.downloaded"},
		{QueueFilesExtracted, "files.extracted"},
		{QueueIOCsPending, "iocs.pending"},
	} {
		if tc.queue != tc.routingKey {
			t.Fatalf("queue %q, want routing key %q", tc.queue, tc.routingKey)
		}
	}
}

func TestDeadLetterRoutingKeyIsDocumentsFailed(t *testing.T) {
	if RoutingDocumentsFailed != "documents.failed" {
		t.Fatalf("got %q, want documents.failed", RoutingDocumentsFailed)
	}
}
