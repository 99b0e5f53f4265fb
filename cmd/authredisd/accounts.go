package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/infigaming-com/go-authredis/security"
)

type accountsFile struct {
	Accounts map[string]accountEntry `yaml:"accounts"`
}

type accountEntry struct {
	PasswordHash string   `yaml:"password_hash"`
	Roles        []string `yaml:"roles"`
	Permissions  []string `yaml:"permissions"`
}

// loadAccounts reads a YAML file of the form
//
//	accounts:
//	  alice:
//	    password_hash: $2a$10$...
//	    roles: [admin]
//	    permissions: ["sessions:*"]
func loadAccounts(path string) (map[string]security.Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	}
	var f accountsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse accounts file: %w", err)
	}

	accounts := make(map[string]security.Account, len(f.Accounts))
	for name, e := range f.Accounts {
		if e.PasswordHash == "" {
			return nil, fmt.Errorf("account %q has no password_hash", name)
		}
		accounts[name] = security.Account{
			PasswordHash: []byte(e.PasswordHash),
			Roles:        e.Roles,
			Permissions:  e.Permissions,
		}
	}
	return accounts, nil
}
