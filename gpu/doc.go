// Package gpu defines the compute backend contract used by the ocean
// simulator and the plan cache that sits on top of it.
//
// A Backend enumerates devices and opens a Context. A Context owns device
// buffers, compute kernels and 2D inverse transform plans. PlanCache keeps
// one Plan per transform size for the lifetime of the simulation, picking
// execution parameters from a wisdom library.
//
// CPUBackend runs everything on the host and is always available. Device
// backends live in the wgpu and opencl subpackages.
package gpu
