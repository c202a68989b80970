/*
Package store implements the Config Store: the persisted record of nodes,
zones, HSMs, policies and clusters, plus the cluster_node/cluster_zone/
cluster_hsm/cluster_policy join tables assigning each to a cluster.

Store wraps a pgxpool.Pool; one file per entity holds that entity's CRUD
and list queries, the way dropDatabas3-hellojohn's internal/store/v1/pg
package is organized. ClusterConfig (clusters.go) is the join the Cluster
Manager actually consumes: a cluster row plus every entity assigned to it,
built from the same per-entity queries rather than one large join.

Schema migrations live under migrations/ at the repository root and are
applied by cmd/orr-migrate, not by this package; Setup and Version here
only read and record the schema_version row that tool maintains.
*/
package store
