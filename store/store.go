// Package store 提供 core.Store / core.KeyValueStore 的实现（内存、Redis）。
//
// 接口定义在 core 包：
//
//	var tables core.Store = store.NewMemoryStore()
//	var history core.KeyValueStore = store.NewMemoryStore()
package store
