// Package impact computes which script elements a change set may invalidate.
//
// ARCHITECTURE:
//
// Every analysis rebuilds a dependency graph from the script:
//
//	character            no dependencies
//	scene[i]             depends on scene[i-1] and on each speaking character
//	<scene>/<dialogue>   depends on its scene and its speaker
//	rel:<a>:<b>          depends on both characters and every scene where
//	                     they speak together (a < b)
//
// An edge "X depends on Y" makes X a dependent of Y. Each element named by a
// change is a seed. Propagation walks dependents depth first with an explicit
// stack and a per-seed visited set. When a node's dependents are exhausted two
// rules add more: a character pulls in every scene depending on it, and a
// scene pulls in every later scene by position.
//
// The impact level grades the fraction of scenes and characters touched:
// under 10% low, under 30% medium, under 60% high, otherwise critical.
package impact
