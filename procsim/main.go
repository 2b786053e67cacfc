// Command procsim runs process-oriented simulation scenarios.
package main

import "github.com/sarchlab/procsim/procsim/cmd"

func main() {
	cmd.Execute()
}
