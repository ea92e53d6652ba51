/*
Package driver is a reference host loop for machines.

It stands in for a game engine: Run ticks at a fixed wall-clock interval and
calls Step, which forwards FixedUpdate at a fixed simulated rate using an
accumulator and Update once per frame. Everything that touches a machine runs
on the loop goroutine; other goroutines reach it through Do.
*/
package driver
