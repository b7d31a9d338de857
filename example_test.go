package nbind_test

import (
	"fmt"
	"os"
	"time"

	"github.com/muir/nbind"
)

type Server struct {
	Name    string        `config:"name,required" desc:"name of the server"`
	Listen  nbind.Address `config:"listen"`
	Timeout time.Duration `config:"timeout"`
}

func Example() {
	b := nbind.FromMap(map[string]string{
		"name":   "demo",
		"listen": "127.0.0.1:9527",
	})
	s, err := nbind.Get[Server](b)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(s.Name, s.Listen.Port, s.Timeout)
	_ = nbind.NewExporter().ExportTo(os.Stdout, s)
	// Output: demo 9527 0s
	// #listen=127.0.0.1:9527
	//
	// #
	// # name of the server
	// #
	// name=demo
	//
	// #timeout=0s
}
