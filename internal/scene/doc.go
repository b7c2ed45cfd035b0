// Package scene implements named multi-step automation sequences.
//
// A scene is an ordered list of steps sharing one clock: each step has
// a start offset in seconds from scene start, an optional condition on
// a device's cached status, and up to eight device writes. The Registry
// stores scenes in a stable order with in-place replacement by name;
// the Engine executes them on a fixed worker pool, submitting writes
// through the device dispatcher so scene runs never touch drivers
// directly.
package scene
