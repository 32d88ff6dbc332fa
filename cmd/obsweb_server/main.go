/*
Client-Server package adapted from Mat Ryer's Go Blueprints examples
see https://github.com/matryer/goblueprints
This book is highly recommended!
*/

package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	"github.com/westphae/fwobserver/obsweb"
)

func main() {
	var addr = flag.String("addr", fmt.Sprintf(":%d", obsweb.Port), "The port for the observer data publication.")
	var res = flag.String("res", "res", "Directory of static files to serve at /")
	flag.Parse() // parse the flags

	// get the room going
	r := obsweb.NewRoom()
	go r.Run()

	// start the web server
	http.Handle("/", http.FileServer(http.Dir(*res)))
	http.Handle("/obsweb", r)
	log.Println("ObsWeb: Starting web server on", *addr)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.Fatal("ObsWeb: ListenAndServe fatal error:", err.Error())
	}
}
