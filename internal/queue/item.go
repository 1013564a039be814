package queue

import "github.com/shiftbrew/dispatch/internal/domain"

// Item is the minimal data placed on the queue.
// Workers fetch the full Job from the store using the ID, keeping the queue
// lightweight and the store authoritative. The item also carries the
// recipient, so the queue can later be partitioned per recipient if delivery
// ordering ever needs to tighten.
type Item struct {
	JobID     string
	Kind      domain.Kind
	Recipient string
}
