package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/clinsys/clinic-services/libs/config"
	"github.com/clinsys/clinic-services/libs/db"
	"github.com/clinsys/clinic-services/libs/kafkax"
	otelx "github.com/clinsys/clinic-services/libs/otel"
	"github.com/clinsys/clinic-services/libs/runtime"
	"github.com/clinsys/clinic-services/services/notification-service/internal/consumer"
	"github.com/clinsys/clinic-services/services/notification-service/internal/inbox"
	"github.com/clinsys/clinic-services/services/notification-service/internal/storage"
)

type appointmentEvent struct {
	ID        string `json:"id"`
	PatientID string `json:"patient_id"`
	DoctorID  string `json:"doctor_id"`
	Date      string `json:"date"`
	Specialty string `json:"specialty"`
	Status    string `json:"status"`
}

func notificationMessage(kind string, evt appointmentEvent) string {
	switch kind {
	case "cancelled":
		return fmt.Sprintf("Your %s appointment on %s was cancelled", evt.Specialty, evt.Date)
	case "rescheduled":
		return fmt.Sprintf("Your %s appointment was moved to %s", evt.Specialty, evt.Date)
	default:
		return fmt.Sprintf("Your %s appointment is booked for %s", evt.Specialty, evt.Date)
	}
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)
	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "notification-service")

	topics := map[string]string{
		config.String("TOPIC_APPOINTMENT_CREATED", "appointments.appointment.created.v1"):         "created",
		config.String("TOPIC_APPOINTMENT_CANCELLED", "appointments.appointment.cancelled.v1"):     "cancelled",
		config.String("TOPIC_APPOINTMENT_RESCHEDULED", "appointments.appointment.rescheduled.v1"): "rescheduled",
	}
	for topic, kind := range topics {
		if strings.TrimSpace(topic) == "" {
			continue
		}
		eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}, func(kind string) consumer.Handler {
			return func(ctx context.Context, msg kafka.Message) error {
				var evt appointmentEvent
				if err := json.Unmarshal(msg.Value, &evt); err != nil {
					logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
					return nil
				}
				if evt.ID == "" || evt.PatientID == "" {
					logger.Error("missing required event fields", "topic", msg.Topic)
					return nil
				}
				date, err := time.Parse(time.RFC3339, evt.Date)
				if err != nil {
					date = time.Time{}
				}
				return notificationsRepo.Insert(ctx, storage.Notification{
					AppointmentID: evt.ID,
					PatientID:     evt.PatientID,
					DoctorID:      evt.DoctorID,
					Kind:          kind,
					Message:       notificationMessage(kind, evt),
					Date:          date,
				})
			}
		}(kind))
		go eventConsumer.Run(ctx)
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("service stopped")
}
