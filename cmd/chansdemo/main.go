// Command chansdemo exercises the three channel kinds and Select end to
// end, logging each step. This is the only place in the module that
// depends on logiface/stumpy: the channels package itself stays off the
// hot path, the same way catrate's own limiter carries no logging
// dependency.
package main

import (
	"context"
	"sync"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"

	chans "github.com/joeycumines/go-chans"
)

func main() {
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(),
		stumpy.L.WithLevel(logiface.LevelInformational),
	)

	logger.Info().Log("starting chansdemo")

	rendezvousDemo(logger)
	bufferedDemo(logger)
	ringDemo(logger)
	selectDemo(logger)

	logger.Info().Log("chansdemo complete")
}

func rendezvousDemo(logger *logiface.Logger[*stumpy.Event]) {
	ch := chans.Make[int](0)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, ok := ch.Recv(context.Background())
		logger.Info().Int("value", v).Bool("ok", ok).Log("unbuffered: received")
	}()
	ch.Send(context.Background(), 42)
	wg.Wait()
	ch.Close()
}

func bufferedDemo(logger *logiface.Logger[*stumpy.Event]) {
	ch := chans.Make[string](1)
	ch.Send(context.Background(), "first")
	logger.Info().Bool("full", ch.IsFull()).Log("buffered1: sent without a receiver")
	v, _ := ch.Recv(context.Background())
	logger.Info().Str("value", v).Log("buffered1: received")
	ch.Close()
}

func ringDemo(logger *logiface.Logger[*stumpy.Event]) {
	ch := chans.Make[int](4)
	for i := 0; i < 4; i++ {
		ch.TrySend(i)
	}
	logger.Info().Int("len", ch.(interface{ Len() int }).Len()).Log("bufferedN: filled")
	for i := 0; i < 4; i++ {
		v, _ := ch.Recv(context.Background())
		logger.Info().Int("value", v).Log("bufferedN: drained")
	}
	ch.Close()
}

func selectDemo(logger *logiface.Logger[*stumpy.Event]) {
	a := chans.Make[int](0)
	b := chans.Make[int](0)

	go func() {
		time.Sleep(10 * time.Millisecond)
		a.Send(context.Background(), 1)
	}()
	go func() {
		time.Sleep(20 * time.Millisecond)
		b.Send(context.Background(), 2)
	}()

	for i := 0; i < 2; i++ {
		sel, ok := chans.Select(
			chans.RecvOp(a),
			chans.RecvOp(b),
		)
		logger.Info().
			Int("index", sel.Index).
			Interface("value", sel.Value).
			Bool("ok", ok).
			Log("select: fired")
	}

	a.Close()
	b.Close()
}
