// Package layout implements the 3D force-directed layout of a simplified
// declaration graph.
//
// # Forces
//
// Every [Engine.Step] sums, per node:
//
//   - repulsion between all pairs closer than RepulsionCutoff, inverse
//     square with a MinDistance floor, found through a spatial hash;
//   - spring attraction along edges toward a rest length that is fixed or
//     grows with endpoint degree ([PhysicsConfig.RestLength]);
//   - center gravity toward the origin;
//   - optional attraction toward the node's namespace centroid, taken from
//     the previous tick.
//
// Velocities integrate semi-implicitly, are damped multiplicatively and
// clamped to MaxVelocity. All constants are per frame at 60 fps; dt is
// normalized accordingly and clamped to MaxStep so a frame hitch cannot
// blow the simulation up.
//
// # Positions
//
// Positions live in a [Store], a dense arena addressed by generational
// [Handle]s. [Engine.SetGraph] removes vanished nodes eagerly, keeps
// survivors in place and spawns newcomers next to a positioned neighbour
// or on a random shell, never at the origin.
//
// # Batch solving
//
// [Engine.Warmup] runs the simulation unpaced on a private copy until it
// settles, committing only on completion. [Engine.Fit] recenters and
// rescales to a target radius. [Engine.Solve] combines both and skips the
// warmup when most positions were restored from a previous session.
package layout
