// Command socialctl is the operator tool for the social backend: schema
// migration, fixture seeding and read-only inspection of relationships,
// inboxes, dedupe markers and registered instances.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
