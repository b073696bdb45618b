// Command crm-updater applies release SQL updates to the CRM database.
package main

import "github.com/aqasim81/crm-updater/internal/cli"

func main() {
	cli.Execute()
}
