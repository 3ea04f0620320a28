// Package scheduler запускает периодические задачи по cron-расписанию
// (github.com/robfig/cron/v3): обслуживание встроенной БД и проверку
// доступности сетевых бэкендов.
//
//	s := scheduler.New(ctx, logger)
//	_, err := s.Add(scheduler.Job{
//		Name:     "db-maintenance",
//		Schedule: "@every 1h",
//		Timeout:  time.Minute,
//		Run:      app.Maintain,
//	})
//	s.Start()
//	defer s.Stop(context.Background())
//
// Паники в задачах перехватываются, перекрывающиеся запуски пропускаются.
package scheduler
