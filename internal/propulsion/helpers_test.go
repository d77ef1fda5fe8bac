package propulsion

import "github.com/san-kum/rotorbridge/internal/dynamo"

func msgsVec(x, y, z float64) dynamo.Vec3 { return dynamo.Vec3{X: x, Y: y, Z: z} }
