/*
Package rxgraph provides a push-based reactive runtime whose operator graphs
can be checkpointed mid-stream and resumed in a freshly built graph.

# Overview

An Observable describes a stream; Subscribe turns it into a tree of
subscription nodes wired to an Observer. Nothing happens until the tree is
initialized: every node is given a Context carrying the graph's scheduler,
logger and metrics, then started leaves first. All deliveries of one graph run
on one logical thread, so operators keep plain fields and never lock their
own state.

	g := rxgraph.NewGraph(pool.NewLogical())
	root := rxgraph.Buffer(rxgraph.FromSlice(values), 3).Subscribe(
	    rxgraph.ObserverFuncs[[]int]{
	        Next: func(b []int) { fmt.Println(b) },
	    })
	if err := g.Start(ctx, root); err != nil {
	    log.Fatal(err)
	}

# Checkpointing

Stateful operators implement Stateful. Save walks the live nodes of a graph
and writes each one's state into a checkpoint.Container under its path
identity (root "0", the i-th input of node p is p+"/"+i). A graph built the
same way gets the same identities, so loading the container before start
resumes every operator where it stopped:

	c, err := g.Checkpoint(ctx)
	// ... later, possibly in another process ...
	g2 := rxgraph.NewGraph(pool.NewLogical())
	err = g2.Resume(ctx, buildGraph(), c)

Events pushed by hot sources between the save and the load are dropped, never
replayed. Time-based state is saved as ticks remaining relative to the clock
and re-anchored to the new graph's clock on load.

Containers can be written to any checkpoint.Store (memory, SQLite, Badger)
with Graph.Persist and read back with Graph.ResumeFrom.

# Lifecycle

A node is created by Subscribe, initialized exactly once, and disposed at most
once. Delivering into a node that was never initialized panics with a
*LifecycleError; delivering into a disposed node does nothing. Dispose is safe
from any goroutine and does not wait for deliveries already running.

# Errors

Operator constructors panic with *ArgumentError on invalid arguments.
Selectors and predicates return an error, which terminates the stream with
OnError. Upstream errors are forwarded unchanged. Checkpoint failures are
returned as *CheckpointError.

# Testing

Package rxtest provides a virtual-time harness with hot and cold test
observables and a recording observer.
*/
package rxgraph
