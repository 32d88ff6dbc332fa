/*
Test out the observer in observer/.
Define a flight path/attitude in code, and then synthesize the matching GPS, gyro, accel and pressure data.
Add some noise if desired.
Then see if the observer can replicate the "true" state given the noisy and limited input data.
*/

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/westphae/fwobserver/observer"
	"github.com/westphae/fwobserver/obsweb"
	"github.com/westphae/fwobserver/sim"
)

var logColumns = []string{
	"T",
	"North", "NorthActual", "East", "EastActual", "Altitude", "AltitudeActual",
	"Roll", "RollActual", "Pitch", "PitchActual", "Heading", "HeadingActual",
	"Va", "VaActual", "Vg", "VgActual", "Course", "CourseActual",
	"Wn", "WnActual", "We", "WeActual",
	"RollVar", "PitchVar",
	"GyroX", "GyroY", "GyroZ", "AccelX", "AccelY", "AccelZ", "PStat", "PDiff",
	"GPSN", "GPSE", "GPSVg", "GPSChi",
}

func main() {
	// Handle some shell arguments
	var (
		scenario, paramsFile, logFile, wsURL string
		mqttBroker, mqttTopic                string
		mqttPort                             int
		gpsPeriod, noiseScale, skip          float64
		seed                                 int64
	)

	const (
		defaultScenario = "turn"
		scenarioUsage   = "Scenario to use: filename or \"turn\" or \"straight\""
		defaultGPS      = 1.0
		gpsUsage        = "Period between GPS fixes, seconds"
		defaultNoise    = 1.0
		noiseUsage      = "Sensor noise as a multiple of the noise the observer is tuned for"
		seedUsage       = "Seed for the sensor noise"
		paramsUsage     = "JSON file of observer parameters overriding the defaults"
		logUsage        = "CSV file to log estimates and truth to, empty for none"
		wsUsage         = "Websocket URL of an obsweb room to stream to, empty for none"
		mqttUsage       = "MQTT broker host to publish estimates to, empty for none"
		skipUsage       = "Seconds of start-up to leave out of the error statistics"
	)

	flag.StringVar(&scenario, "scenario", defaultScenario, scenarioUsage)
	flag.StringVar(&scenario, "s", defaultScenario, scenarioUsage)
	flag.Float64Var(&gpsPeriod, "gps-period", defaultGPS, gpsUsage)
	flag.Float64Var(&noiseScale, "noise", defaultNoise, noiseUsage)
	flag.Int64Var(&seed, "seed", 1, seedUsage)
	flag.StringVar(&paramsFile, "params", "", paramsUsage)
	flag.StringVar(&logFile, "log", "observer.csv", logUsage)
	flag.StringVar(&wsURL, "ws", "", wsUsage)
	flag.StringVar(&mqttBroker, "mqtt", "", mqttUsage)
	flag.IntVar(&mqttPort, "mqtt-port", obsweb.DefaultMQTTConfig().Port, "MQTT broker port")
	flag.StringVar(&mqttTopic, "mqtt-topic", obsweb.DefaultMQTTConfig().Topic, "MQTT topic")
	flag.Float64Var(&skip, "skip", 10, skipUsage)
	flag.Parse()

	p := observer.DefaultParams()
	if paramsFile != "" {
		f, err := os.Open(paramsFile)
		if err != nil {
			log.Fatalln(err)
		}
		p, err = observer.LoadParams(f)
		f.Close()
		if err != nil {
			log.Fatalln(err)
		}
	}

	var sit sim.Situation
	if s, ok := sim.Named(scenario); ok {
		sit = s
	} else {
		log.Printf("Sim: Loading situation from %s\n", scenario)
		s, err := sim.NewSituationFromFile(scenario)
		if err != nil {
			log.Fatalln(err)
		}
		sit = s
	}

	noise := sim.NoiseFromParams(p)
	for _, v := range []*float64{&noise.Gyro, &noise.Accel, &noise.Static, &noise.Diff,
		&noise.GPSNorth, &noise.GPSEast, &noise.GPSVg, &noise.GPSCourse} {
		*v *= noiseScale
	}

	fmt.Println("Simulation parameters:")
	fmt.Printf("\tScenario: %s, %.1f s to %.1f s\n", scenario, sit.BeginTime(), sit.EndTime())
	fmt.Printf("\tControl Frequency: %d Hz\n", int(1/p.TsControl+0.5))
	fmt.Printf("\tGPS Period: %.2f s\n", gpsPeriod)
	fmt.Printf("\tGyro Noise: %f °/s\n", noise.Gyro/observer.Deg)
	fmt.Printf("\tAccel Noise: %f m/s²\n", noise.Accel)
	fmt.Printf("\tPressure Noise: %f Pa static, %f Pa differential\n", noise.Static, noise.Diff)
	fmt.Printf("\tGPS Noise: %f m, %f m/s, %f °\n", noise.GPSNorth, noise.GPSVg, noise.GPSCourse/observer.Deg)

	var pubs []obsweb.Publisher
	if wsURL != "" {
		s, err := obsweb.NewSender(wsURL)
		if err != nil {
			log.Fatalln(err)
		}
		pubs = append(pubs, s)
	}
	if mqttBroker != "" {
		c := obsweb.DefaultMQTTConfig()
		c.Broker, c.Port, c.Topic = mqttBroker, mqttPort, mqttTopic
		mp, err := obsweb.NewMQTTPublisher(c)
		if err != nil {
			log.Fatalln(err)
		}
		pubs = append(pubs, mp)
	}
	defer func() {
		for _, pub := range pubs {
			pub.Close()
		}
	}()

	var logger *sim.EstimateLogger
	if logFile != "" {
		var err error
		if logger, err = sim.CreateEstimateLogger(logFile, logColumns...); err != nil {
			log.Fatalln(err)
		}
		defer logger.Close()
	}

	// This is where it all happens
	fmt.Println("Running Simulation")
	flight := sim.NewFlight(sit, p, gpsPeriod, noise, seed)
	var (
		x sim.Truth
		m observer.SensorMeasurement
	)
	if err := flight.Next(&x, &m); err != nil {
		log.Fatalln(err)
	}
	o, err := observer.NewObserver(p, observer.EstimatedState{}, m)
	if err != nil {
		log.Fatalln(err)
	}

	stats := sim.NewErrorStats()
	data := new(obsweb.EstimateData)
	var failures int
	for {
		if err := flight.Next(&x, &m); err != nil {
			break
		}

		s, err := o.Update(&m)
		if err != nil {
			failures++
			log.Printf("Sim: observer failed at t=%.2f: %v\n", x.T, err)
			continue
		}
		stats.Add(s, &x)

		if logger != nil {
			row := map[string]interface{}{"T": x.T}
			for k, v := range o.GetLogMap() {
				row[k] = v
			}
			addTruth(row, &x)
			if err := logger.Log(row); err != nil {
				log.Fatalln(err)
			}
		}

		data.Update(o, &m)
		for _, pub := range pubs {
			if err := pub.Publish(data); err != nil {
				log.Println(err)
			}
		}
	}

	fmt.Printf("Estimation errors after the first %.0f s:\n", skip)
	sim.Print(os.Stdout, stats.Summarize(int(skip/p.TsControl)))
	if failures > 0 {
		fmt.Printf("Observer failed on %d ticks\n", failures)
	}
	if n := o.AccelRejections(); n > 0 {
		fmt.Printf("Accelerometer gate rejected %d corrections\n", n)
	}
	if logger != nil {
		fmt.Printf("Log written to %s with columns %s\n", logFile, strings.Join(logger.Header(), ","))
	}
}

func addTruth(lm map[string]interface{}, x *sim.Truth) {
	lm["NorthActual"] = x.North
	lm["EastActual"] = x.East
	lm["AltitudeActual"] = x.Altitude
	lm["RollActual"] = x.Phi / observer.Deg
	lm["PitchActual"] = x.Theta / observer.Deg
	lm["HeadingActual"] = x.Psi / observer.Deg
	lm["VaActual"] = x.Va
	lm["VgActual"] = x.Vg
	lm["CourseActual"] = x.Chi / observer.Deg
	lm["WnActual"] = x.Wn
	lm["WeActual"] = x.We
}
