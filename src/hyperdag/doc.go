// Package hyperdag wires the components of a hyperdag node from a
// config.Config: keys, UTXO store, DAG, mempool, credential store, metrics,
// network substrate, gossip pipeline, command processor, event loop and HTTP
// service.
//
//	conf := config.NewDefaultConfig()
//	conf.MACSecret = os.Getenv("HYPERDAG_MAC_SECRET")
//
//	engine := hyperdag.New(conf)
//	if err := engine.Init(); err != nil {
//		return err
//	}
//	go engine.Run(ctx)
//	...
//	cancel()
//	engine.Shutdown()
package hyperdag
