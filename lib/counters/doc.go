// Package counters initializes the statistics counters of the VPN bot.
//
// A Counter is a named integer entry in a key-value store. The bot keeps three
// of them (DefaultCounters): the total number of users, the number of active
// users and the total income. Other services increment them, this package only
// creates them.
//
// The Initializer connects through a store.Connector, writes every counter
// with its initial value, waits for each write to be acknowledged and closes
// the connection on every path. By default existing values are overwritten,
// so running it twice resets the counters twice. With IfAbsent set, existing
// counters are left untouched.
//
// Example:
//
//	in := counters.NewInitializer(redisstore.Connector(conf.Redis), common.CreateLogger("statsinit"))
//	res, err := in.Run(ctx)
package counters
