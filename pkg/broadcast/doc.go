// Package broadcast provides typed, non-blocking in-process fan-out.
//
// MemoryBroadcaster delivers each message to all current subscribers and
// drops subscribers that cannot keep up. Topics multiplexes broadcasters by
// name with an LRU bound, which is how per-recipient dashboard feeds are kept:
//
//	feeds := broadcast.NewTopics[Notification]()
//	sub, _ := feeds.Subscribe(ctx, recipientID)
//	feeds.Publish(ctx, recipientID, n)
//	for msg := range sub.Receive(ctx) { ... }
package broadcast
