// Package dynamo provides the numeric primitives shared by the engine, the
// propulsion model and the controllers.
//
//   - [State]: vector representing integrated state
//   - [Vec3]: 3D vector used for forces, torques and velocities
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: numerical integrator interface
//   - [Controller]: feedback controller interface
//
// # Example
//
//	body, _ := engine.NewRigidBody("base_link", mass, inertia)
//	integ := integrators.NewRK4()
//	x = integ.Step(body, x, u, t, dt)
//
// # Thread Safety
//
// Values in this package are plain data. Integrators keep scratch buffers and
// must not be shared between goroutines.
package dynamo
