// Package sim implements the simulation-state orchestrator: the single owner
// of the temperature grid and of the solver engine.
//
// Record writes one reading into the grid. Snapshot captures the grid at one
// write generation and asks every space of the engine to solve against that
// captured copy, so a snapshot's input and its solver outputs always agree
// even while new readings keep arriving. A failing space never fails the
// snapshot; only a broken engine does.
package sim
