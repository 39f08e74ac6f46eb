package user

import (
	"database/sql"
)

const userColumns = "`id`, `username`, `password`, `display_name`, `about`, `follower_count`, `profile_picture`, `created_at`, `updated_at`"

type UserRepoSQL struct {
	db *sql.DB
}

func NewUserRepoSQL(db *sql.DB) *UserRepoSQL {
	return &UserRepoSQL{db: db}
}

func (repo *UserRepoSQL) GetByID(id int64) (*User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = ?"
	return repo.getOne(query, id)
}

func (repo *UserRepoSQL) GetByUsername(username string) (*User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE username = ?"
	return repo.getOne(query, username)
}

func (repo *UserRepoSQL) getOne(query string, arg interface{}) (*User, error) {
	r := repo.db.QueryRow(query, arg)

	u := User{}
	err := r.Scan(&u.ID, &u.Username, &u.Password, &u.DisplayName, &u.About,
		&u.FollowerCount, &u.ProfilePicture, &u.Created, &u.Updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &u, nil
}

func (repo *UserRepoSQL) Add(u *User) (int64, error) {
	query := "INSERT INTO users (`username`, `password`, `display_name`, `about`, `profile_picture`) VALUES (?, ?, ?, ?, ?)"
	r, err := repo.db.Exec(query, u.Username, u.Password, u.DisplayName, u.About, u.ProfilePicture)

	if err != nil {
		return 0, err
	}

	lastID, err := r.LastInsertId()
	if err != nil {
		return 0, err
	}

	return lastID, nil
}

func (repo *UserRepoSQL) Update(u *User) error {
	query := "UPDATE users SET `display_name` = ?, `about` = ?, `profile_picture` = ? WHERE id = ?"
	_, err := repo.db.Exec(query, u.DisplayName, u.About, u.ProfilePicture, u.ID)

	return err
}
