/*
Package types defines the entities shared across ORR's components: nodes,
zones, HSMs, policies and clusters, plus the enums describing their state.

ClusterConfig is the shape pkg/store hands to a Cluster Manager: a cluster
row joined against the nodes, zones, HSMs and policies assigned to it.
Everything else in the module is built on top of these types rather than
defining its own.
*/
package types
