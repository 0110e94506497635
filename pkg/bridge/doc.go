// Package bridge relays messages between an application and the host
// across a transport.Transport.
//
// A Bridge combines:
//
//   - a Relay that receives messages one at a time and fans each out to
//     every registered listener, in registration order
//   - a Sender that forwards outbound messages fire-and-forget through a
//     bounded queue and a single worker goroutine
//   - a listener registry whose Register calls return unsubscribe handles
//
// Example usage:
//
//	b := bridge.New(types.ChannelIPC, t, cfg, log)
//	defer b.Close()
//
//	unsubscribe := b.OnMessage(func(msg types.Message) {
//	    fmt.Println(msg.Payload)
//	})
//	defer unsubscribe()
//
//	go b.Run(ctx)
//	b.Send("hello")
package bridge
