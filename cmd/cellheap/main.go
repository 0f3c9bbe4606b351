// Command cellheap inspects the cell heap's geometry and exercises it with
// synthetic workloads and heap scripts.
package main

func main() {
	execute()
}
