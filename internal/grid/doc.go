// Package grid owns the temperature grid data model.
//
// Responsibilities: point kinds, the fixed-size width×height matrix of point
// readings and its write generation, and immutable frames captured from it.
// Key types: Kind, Point, Grid, Frame.
//
// A Grid is plain data and is not safe for concurrent use. Its owner (the
// simulation orchestrator) serialises every write and every full-grid read.
package grid
