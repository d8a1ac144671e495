// Copyright 2025 Certen Protocol
//
// Repositories - Convenience wrapper for all database repositories.
// Provides a single point of access to all repository types.

package database

// Repositories holds all repository instances.
type Repositories struct {
	Controllers *ControllerRepository
	Resources   *ResourceRepository
	Policies    *PolicyRepository
	Registries  *RegistryRepository
	Tails       *TailsRepository
	Tasks       *TaskRepository
}

// NewRepositories creates all repositories with the given client.
func NewRepositories(client *Client) *Repositories {
	return &Repositories{
		Controllers: NewControllerRepository(client),
		Resources:   NewResourceRepository(client),
		Policies:    NewPolicyRepository(client),
		Registries:  NewRegistryRepository(client),
		Tails:       NewTailsRepository(client),
		Tasks:       NewTaskRepository(client),
	}
}
