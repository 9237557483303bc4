// Command yearreview serves GitHub year-in-review profiles.
package main

import "github.com/JakeFAU/my-github-review/cmd"

func main() {
	cmd.Execute()
}
